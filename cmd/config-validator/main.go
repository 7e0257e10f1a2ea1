package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/provider"
	"github.com/orgoj/logchannel/internal/provider/all"
	"github.com/orgoj/logchannel/internal/resolver"
)

func main() {
	resolve := flag.Bool("resolve", true, "Look up every channel binding in its resolver")
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("Error: Config file path is required")
		fmt.Println("Usage: config-validator [-resolve=false] <config-file>")
		os.Exit(1)
	}
	configPath := flag.Args()[0]

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("Validation error: %v\n", err)
		os.Exit(1)
	}

	if *resolve {
		if err := resolveBindings(cfg, all.NewEnvironment()); err != nil {
			fmt.Printf("Binding error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("Configuration is valid!")
}

// resolveBindings checks that every enabled channel's factory and destination
// bindings exist and have the right kind. No broker is contacted.
func resolveBindings(cfg *config.Config, env *resolver.Environment) error {
	enabled := 0
	for _, dest := range cfg.Channels {
		if !dest.Enabled {
			continue
		}
		enabled++

		ctx, err := env.NewContext(cfg.Resolvers[dest.Resolver])
		if err != nil {
			return fmt.Errorf("channel '%s': %w", dest.Name, err)
		}
		err = checkChannel(ctx, dest)
		ctx.Close()
		if err != nil {
			return fmt.Errorf("channel '%s': %w", dest.Name, err)
		}
	}

	if enabled == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}
	return nil
}

func checkChannel(ctx resolver.Context, dest config.ChannelDestination) error {
	obj, err := ctx.Lookup(dest.FactoryBinding)
	if err != nil {
		return err
	}
	if _, ok := obj.(provider.ConnectionFactory); !ok {
		return fmt.Errorf("'%s' is not a connection factory", dest.FactoryBinding)
	}

	obj, err = ctx.Lookup(dest.DestinationBinding)
	if err != nil {
		return err
	}
	d, ok := obj.(provider.Destination)
	if !ok {
		return fmt.Errorf("'%s' is not a destination", dest.DestinationBinding)
	}
	if d.Kind().String() != dest.Kind {
		return fmt.Errorf("'%s' is a %s, not a %s", dest.DestinationBinding, d.Kind(), dest.Kind)
	}
	return nil
}
