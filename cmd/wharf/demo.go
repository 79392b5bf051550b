package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/wharf"
)

// Greeter is a stateless demo service.
type Greeter struct{}

func (g *Greeter) Greet(ctx wharf.Context, name string) (string, error) {
	ctx.Logger().Info("Greeting", "name", name)
	return fmt.Sprintf("Hello, %s!", name), nil
}

// Counter is a demo object keeping one total per key.
type Counter struct {
	mu     sync.Mutex
	totals map[string]int64
}

func (c *Counter) Add(ctx wharf.Context, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[ctx.Key()] += delta
	return c.totals[ctx.Key()], nil
}

func (c *Counter) Get(ctx wharf.Context, _ []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []byte(fmt.Sprint(c.totals[ctx.Key()])), nil
}

// Signup is a demo workflow.
type Signup struct{}

type signupRequest struct {
	Email string `json:"email"`
}

type signupResult struct {
	Account string `json:"account"`
}

func (Signup) Run(ctx wharf.Context, req signupRequest) (signupResult, error) {
	if !strings.Contains(req.Email, "@") {
		return signupResult{}, fmt.Errorf("invalid email: %q", req.Email)
	}
	return signupResult{Account: "acct_" + ctx.Key()}, nil
}

// declareDemo records the demo types on the app and queues them for bootstrap.
func declareDemo(app *wharf.App) (wharf.Feature, []any) {
	reg := app.Registry()

	wharf.DeclareService[*Greeter](reg, "Greeter")
	wharf.DeclareJSONHandler(reg, "greet", (*Greeter).Greet)

	wharf.DeclareObject[*Counter](reg, "Counter")
	wharf.DeclareJSONHandler(reg, "add", (*Counter).Add)
	wharf.DeclareHandler(reg, "get", (*Counter).Get)

	wharf.DeclareWorkflow[Signup](reg, "Signup")
	wharf.DeclareJSONHandler(reg, "run", Signup.Run)

	feature := wharf.Feature{
		Services:  []wharf.Class{wharf.ClassOf[Greeter]()},
		Objects:   []wharf.Class{wharf.ClassOf[Counter]()},
		Workflows: []wharf.Class{wharf.ClassOf[Signup]()},
	}
	instances := []any{&Greeter{}, &Counter{totals: make(map[string]int64)}, Signup{}}
	return feature, instances
}
