/*
Package domain holds the types shared by every stage of the registration
pipeline: roles, class identity, handler contexts, bound definitions and the
errors and lifecycle events the pipeline reports.
*/
package domain
