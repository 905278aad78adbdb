package suite

import (
	"github.com/QTest-hq/qgrade/internal/loader"
)

// SOLIDSuite checks the single responsibility refactoring exercise
func SOLIDSuite() *Suite {
	return New("solid-srp", "SOLID - Single Responsibility Principle",
		NewCase("test_user_validator_exists", "UserValidator class exists",
			instanceHas("UserValidator", "validate_user_data"), "SOLID-SRP", 2,
			WithRequiredClasses("UserValidator")),
		NewCase("test_user_repository_exists", "UserRepository class exists",
			instanceHas("UserRepository", "save_user"), "SOLID-SRP", 2,
			WithRequiredClasses("UserRepository")),
		NewCase("test_email_service_exists", "EmailService class exists",
			instanceHas("EmailService", "send_welcome_email"), "SOLID-SRP", 2,
			WithRequiredClasses("EmailService")),
		NewCase("test_user_service_srp_compliance", "UserService follows SRP",
			checkUserServiceSRP, "SOLID-SRP", 3),
		NewCase("test_dependency_injection", "Proper dependency injection",
			checkDependencyInjection, "SOLID-SRP", 3),
	)
}

// instanceHas requires class to exist, to be constructible without arguments
// and to expose method on the instance
func instanceHas(class, method string) Check {
	return func(mod *loader.Module) error {
		if !mod.Has(class) {
			return Failf("%s class not found", class)
		}
		inst, err := mod.Instantiate(class)
		if err != nil {
			return err
		}
		return Assert(inst.HasAttr(method), "%s method not found", method)
	}
}

func checkUserServiceSRP(mod *loader.Module) error {
	if !mod.Has("UserService") {
		return Failf("UserService class not found")
	}

	methods, err := attrs(mod, "UserService")
	if err != nil {
		return err
	}
	delegated := map[string]string{
		"validate_user_data": "UserService should delegate validation to UserValidator",
		"send_email":         "UserService should delegate email sending to EmailService",
	}
	for _, name := range []string{"validate_user_data", "send_email"} {
		for _, m := range methods {
			if m == name {
				return Failf("%s", delegated[name])
			}
		}
	}
	return nil
}

func checkDependencyInjection(mod *loader.Module) error {
	if !mod.Has("UserService") {
		return Failf("UserService class not found")
	}

	svc, err := mod.Get("UserService")
	if err != nil {
		return err
	}
	for _, dep := range []string{"validator", "repository", "email_service"} {
		found := false
		for _, p := range svc.InitParams {
			if p == dep {
				found = true
				break
			}
		}
		if !found {
			return Failf("UserService should accept %s as dependency", dep)
		}
	}
	return nil
}
