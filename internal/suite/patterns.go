package suite

import (
	"strings"

	"github.com/QTest-hq/qgrade/internal/loader"
)

// PatternsSuite checks the e-commerce design patterns exercise
func PatternsSuite() *Suite {
	return New("patterns-ecommerce", "Design Patterns - E-commerce System",
		NewCase("test_strategy_pattern", "Strategy pattern implementation",
			checkStrategy, "Patterns-Strategy", 4, WithRequiredPatterns("strategy")),
		NewCase("test_observer_pattern", "Observer pattern implementation",
			checkObserver, "Patterns-Observer", 4, WithRequiredPatterns("observer")),
		NewCase("test_factory_pattern", "Factory pattern implementation",
			checkFactory, "Patterns-Factory", 3, WithRequiredPatterns("factory")),
		NewCase("test_command_pattern", "Command pattern implementation",
			checkCommand, "Patterns-Command", 4, WithRequiredPatterns("command")),
		NewCase("test_decorator_pattern", "Decorator pattern implementation",
			checkDecorator, "Patterns-Decorator", 4, WithRequiredPatterns("decorator")),
	)
}

func checkStrategy(mod *loader.Module) error {
	classes := names(mod, func(n string) bool {
		return strings.Contains(n, "Payment") && strings.Contains(n, "Strategy")
	})
	if len(classes) < 2 {
		return Failf("At least 2 payment strategies should be implemented")
	}

	for _, name := range classes {
		// the abstract base need not implement it
		if name == "PaymentStrategy" {
			continue
		}
		if err := requireAttr(mod, name, "process_payment", name+" should have process_payment method"); err != nil {
			return err
		}
	}
	return nil
}

func checkObserver(mod *loader.Module) error {
	classes := names(mod, containing("Observer", "Notifier"))
	if len(classes) < 2 {
		return Failf("At least 2 observer implementations should exist")
	}

	for _, name := range classes {
		if strings.Contains(name, "Observer") {
			continue
		}
		ok, err := anyAttr(mod, name, func(a string) bool { return strings.Contains(a, "on_") })
		if err != nil {
			return err
		}
		if !ok {
			return Failf("%s should have event handler methods", name)
		}
	}
	return nil
}

func checkFactory(mod *loader.Module) error {
	classes := names(mod, containing("Factory"))
	if len(classes) < 1 {
		return Failf("At least 1 factory should be implemented")
	}

	for _, name := range classes {
		ok, err := anyAttr(mod, name, containingFold("create"))
		if err != nil {
			return err
		}
		if !ok {
			return Failf("%s should have creation methods", name)
		}
	}
	return nil
}

func checkCommand(mod *loader.Module) error {
	classes := names(mod, containing("Command"))
	if len(classes) < 2 {
		return Failf("At least 2 command implementations should exist")
	}

	for _, name := range classes {
		if name == "OrderCommand" {
			continue
		}
		if err := requireAttr(mod, name, "execute", name+" should have execute method"); err != nil {
			return err
		}
		if err := requireAttr(mod, name, "undo", name+" should have undo method"); err != nil {
			return err
		}
	}
	return nil
}

func checkDecorator(mod *loader.Module) error {
	classes := names(mod, containing("Decorator"))
	if len(classes) < 2 {
		return Failf("At least 2 decorator implementations should exist")
	}

	for _, name := range classes {
		if name == "OrderDecorator" {
			continue
		}
		if err := requireAttr(mod, name, "get_total_amount", name+" should have get_total_amount method"); err != nil {
			return err
		}
	}
	return nil
}
