package suite

import (
	"context"
	"strings"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/loader"
)

// ProjectSuite checks the capstone project for breadth of production features
func ProjectSuite() *Suite {
	return New("project-implementation", "Complete Project Implementation",
		NewCase("test_solid_principles_applied", "SOLID principles throughout project",
			checkProjectSOLID, "Project-SOLID", 5),
		NewCase("test_design_patterns_integration", "Multiple design patterns integration",
			checkPatternsIntegration, "Project-Patterns", 5,
			WithRequiredPatterns("strategy", "observer", "factory", "repository", "command")),
		NewCase("test_clean_architecture_layers", "Clean architecture layering",
			checkArchitectureLayers, "Project-Architecture", 5),
		NewCase("test_async_implementation", "Async/await implementation",
			checkAsync, "Project-Async", 3),
		NewCase("test_error_handling", "Error handling and domain exceptions",
			checkErrorHandling, "Project-Errors", 3),
		NewCase("test_monitoring_and_observability", "Monitoring and observability",
			checkMonitoring, "Project-Monitoring", 4),
		NewCase("test_api_endpoints", "REST API implementation",
			checkAPIImplementation, "Project-API", 4),
		NewCase("test_configuration_management", "Configuration management",
			checkConfiguration, "Project-Config", 3),
		NewCase("test_production_readiness", "Production-ready features",
			checkProductionReadiness, "Project-Production", 5),
	)
}

type indicator struct {
	name    string
	needles []string
}

var (
	patternIndicators = []indicator{
		{"strategy", []string{"strategy", "payment"}},
		{"observer", []string{"observer", "event", "notification"}},
		{"factory", []string{"factory", "create"}},
		{"repository", []string{"repository"}},
		{"command", []string{"command"}},
	}

	productionFeatures = []indicator{
		{"security", []string{"security", "auth", "jwt", "password", "hash"}},
		{"validation", []string{"validate", "pydantic", "schema"}},
		{"performance", []string{"cache", "background", "async"}},
		{"reliability", []string{"retry", "circuit", "health"}},
	}
)

// found returns indicator names with a needle inside some lower-cased name
func found(mod *loader.Module, indicators []indicator) []string {
	out := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if len(names(mod, containingFold(ind.needles...))) > 0 {
			out = append(out, ind.name)
		}
	}
	return out
}

// checkProjectSOLID counts classes whose constructors take collaborators.
// Classes without a Python-level __init__ (exceptions, ABCs, plain holders)
// are skipped rather than failing the whole case.
func checkProjectSOLID(mod *loader.Module) error {
	injected := 0
	for _, m := range mod.Members() {
		if !m.IsClass() || m.InitLocals < 0 {
			continue
		}
		if m.InitLocals-1 > 2 {
			injected++
		}
	}
	return Assert(injected >= 3, "Should use dependency injection (SOLID DIP)")
}

func checkPatternsIntegration(mod *loader.Module) error {
	patterns := found(mod, patternIndicators)
	return Assert(len(patterns) >= 4, "Should implement multiple patterns, found: %s", pyList(patterns))
}

func checkArchitectureLayers(mod *loader.Module) error {
	domain := names(mod, containing("Customer", "Product", "Order", "Money", "Email"))
	if len(domain) < 5 {
		return Failf("Should have rich domain layer")
	}

	services := names(mod, func(n string) bool {
		return strings.Contains(n, "Service") && !strings.Contains(n, "Domain")
	})
	if len(services) < 1 {
		return Failf("Should have application services")
	}

	infra := names(mod, containing("Repository", "Model", "Store"))
	return Assert(len(infra) >= 3, "Should have infrastructure implementations")
}

// checkAsync looks for async def in the source, then for coroutine members
func checkAsync(mod *loader.Module) error {
	tree, err := analyzer.New().Parse(context.Background(), mod.Source)
	if err == nil {
		hasAsync := analyzer.HasAsyncFunctions(tree)
		tree.Close()
		if hasAsync {
			return nil
		}
	}

	for _, m := range mod.Members() {
		if !strings.HasPrefix(m.Name, "_") && m.Coroutine {
			return nil
		}
	}
	return Failf("Should implement async operations for scalability")
}

func checkErrorHandling(mod *loader.Module) error {
	errs := names(mod, containing("Error", "Exception"))
	return Assert(len(errs) >= 1, "Should have domain-specific exception classes")
}

func checkMonitoring(mod *loader.Module) error {
	monitoring := names(mod, containingFold("metric", "logger", "log", "monitor"))
	return Assert(len(monitoring) >= 1, "Should include monitoring/logging capabilities")
}

func checkAPIImplementation(mod *loader.Module) error {
	api := names(mod, containingFold("app", "router", "endpoint", "api"))
	return Assert(len(api) >= 1, "Should have API implementation")
}

func checkConfiguration(mod *loader.Module) error {
	config := names(mod, containingFold("config", "setting", "env"))
	return Assert(len(config) >= 1, "Should have configuration management")
}

func checkProductionReadiness(mod *loader.Module) error {
	features := found(mod, productionFeatures)
	return Assert(len(features) >= 2, "Should have production features: %s", pyList(features))
}
