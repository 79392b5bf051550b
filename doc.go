/*
Package wharf registers application types as durable handlers with a
durable-execution runtime.

Types declare a role (service, object or workflow) and their handlers up
front. Nothing is bound until the application signals that its instances
exist: Finalize then resolves each declared type to a live instance, binds its
handlers, serves them on a single HTTP endpoint and announces that endpoint to
the control plane's admin API.

# Concept

Startup has two phases. During declaration, types are recorded in the App's
Registry and queued per role with ForFeature. At bootstrap, Finalize drains the
service, object and workflow queues in that order. A type that cannot be
resolved or bound is logged and skipped; the rest are still served. The
deployment handshake treats "already registered" (409) as success and is
retried on the next Finalize when it fails.

# Usage

	type Greeter struct{}

	func (g *Greeter) Greet(ctx wharf.Context, name string) (string, error) {
		return "Hello, " + name, nil
	}

	func main() {
		app, err := wharf.New(wharf.DefaultConfig())
		if err != nil {
			log.Fatal(err)
		}

		reg := app.Registry()
		wharf.DeclareService[*Greeter](reg, "Greeter")
		wharf.DeclareJSONHandler(reg, "greet", (*Greeter).Greet)

		_ = app.ForFeature(wharf.Feature{Services: []wharf.Class{wharf.ClassOf[Greeter]()}})

		report, err := app.Finalize(context.Background(), wharf.Instances(&Greeter{}))
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("serving %v on port %d", report.Attached, app.Port())
	}
*/
package wharf
