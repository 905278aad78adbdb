package suite

import (
	"strings"

	"github.com/QTest-hq/qgrade/internal/loader"
)

// DDDSuite checks the domain-driven e-commerce exercise
func DDDSuite() *Suite {
	return New("ddd-ecommerce", "Domain-Driven Design - E-commerce Domain",
		NewCase("test_bounded_contexts", "Bounded contexts separation",
			checkBoundedContexts, "DDD-Contexts", 3),
		NewCase("test_value_objects", "Value Objects implementation",
			checkValueObjects, "DDD-ValueObjects", 4),
		NewCase("test_aggregates", "Aggregate design and implementation",
			checkAggregates, "DDD-Aggregates", 5),
		NewCase("test_domain_events", "Domain Events implementation",
			checkDomainEvents, "DDD-Events", 4),
		NewCase("test_repositories", "Repository pattern in DDD",
			checkDDDRepositories, "DDD-Repositories", 3),
		NewCase("test_ubiquitous_language", "Use of ubiquitous language",
			checkUbiquitousLanguage, "DDD-Language", 3),
		NewCase("test_business_rules", "Business rules implementation",
			checkBusinessRules, "DDD-Rules", 4),
	)
}

var (
	boundedContexts = []string{"customer", "product", "order"}
	domainTerms     = []string{"CustomerId", "ProductId", "OrderId", "Money", "Email"}
)

func checkBoundedContexts(mod *loader.Module) error {
	classes := names(mod, containingFold(boundedContexts...))
	return Assert(len(classes) >= 6, "Should have classes from different bounded contexts")
}

func checkValueObjects(mod *loader.Module) error {
	vos := names(mod, containingFold("money", "email", "address"))
	if len(vos) < 3 {
		return Failf("Should have Value Objects like Money, Email, Address")
	}

	if mod.Has("Money") {
		if err := requireAttr(mod, "Money", "add", "Money should have add method"); err != nil {
			return err
		}
		if err := requireAttr(mod, "Money", "multiply", "Money should have multiply method"); err != nil {
			return err
		}
	}
	return nil
}

func checkAggregates(mod *loader.Module) error {
	aggregates := names(mod, func(n string) bool {
		lower := strings.ToLower(n)
		return containsAny(lower, boundedContexts...) && !containsAny(lower, "id", "repository", "service")
	})
	if len(aggregates) < 3 {
		return Failf("Should have Customer, Product, Order aggregates")
	}

	for _, name := range aggregates {
		ok, err := anyAttr(mod, name, containingFold("domain_events", "get_events"))
		if err != nil {
			return err
		}
		if !ok {
			return Failf("%s should manage domain events", name)
		}
	}
	return nil
}

func checkDomainEvents(mod *loader.Module) error {
	events := names(mod, containing("Event"))
	if len(events) < 3 {
		return Failf("Should have domain event classes")
	}

	if mod.Has("DomainEvent") {
		return requireAttr(mod, "DomainEvent", "event_type", "DomainEvent should have event_type method")
	}
	return nil
}

func checkDDDRepositories(mod *loader.Module) error {
	repos := names(mod, containing("Repository"))
	if len(repos) < 4 {
		return Failf("Should have repository interfaces and implementations")
	}

	interfaces, implementations := 0, 0
	for _, name := range repos {
		if strings.HasPrefix(name, "I") {
			interfaces++
		} else {
			implementations++
		}
	}
	if interfaces < 3 {
		return Failf("Should have repository interfaces")
	}
	return Assert(implementations >= 3, "Should have repository implementations")
}

func checkUbiquitousLanguage(mod *loader.Module) error {
	found := 0
	for _, term := range domainTerms {
		if mod.Has(term) {
			found++
		}
	}
	return Assert(found >= 4, "Should use domain-specific types and terminology")
}

func checkBusinessRules(mod *loader.Module) error {
	rules := names(mod, containingFold("rule", "validate", "policy", "constraint"))
	return Assert(len(rules) >= 2, "Should have business rules or validation logic")
}
