/*
Package ports defines the interfaces the registration pipeline depends on.

# Key Interfaces

  - Resolver: supplies live instances for declared classes at bootstrap.
  - RegistrationStore: remembers which deployment URIs the control plane accepted.
  - DistributedLocker: serializes handshakes for one URI across replicas.
*/
package ports
