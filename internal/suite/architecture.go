package suite

import (
	"strings"

	"github.com/QTest-hq/qgrade/internal/loader"
)

// ArchitectureSuite checks the layered blog platform exercise
func ArchitectureSuite() *Suite {
	return New("architecture-blog", "Architecture - Blog Platform",
		NewCase("test_repository_pattern", "Repository pattern implementation",
			checkRepositoryPattern, "Architecture-Repository", 3),
		NewCase("test_service_layer", "Service layer implementation",
			checkServiceLayer, "Architecture-Service", 3),
		NewCase("test_domain_entities", "Domain entities implementation",
			checkDomainEntities, "Architecture-Domain", 4),
		NewCase("test_api_layer", "API layer implementation",
			checkAPILayer, "Architecture-API", 3),
		NewCase("test_clean_architecture", "Clean Architecture principles",
			checkCleanArchitecture, "Architecture-Clean", 5),
	)
}

var (
	databaseMethods        = []string{"execute", "query", "commit", "rollback"}
	expectedRoutes         = []string{"/api/auth", "/api/articles", "/api/comments"}
	infrastructureImports  = []string{"sqlalchemy", "fastapi", "requests"}
	architectureEntityName = []string{"User", "Article", "Comment"}
)

func checkRepositoryPattern(mod *loader.Module) error {
	repos := names(mod, containing("Repository"))
	if len(repos) < 2 {
		return Failf("At least 2 repository implementations should exist")
	}

	for _, name := range repos {
		// interfaces are prefixed with I
		if strings.HasPrefix(name, "I") {
			continue
		}
		if err := requireAttr(mod, name, "save", name+" should have save method"); err != nil {
			return err
		}
		if err := requireAttr(mod, name, "find_by_id", name+" should have find_by_id method"); err != nil {
			return err
		}
	}
	return nil
}

func checkServiceLayer(mod *loader.Module) error {
	services := names(mod, containing("Service"))
	if len(services) < 2 {
		return Failf("At least 2 service implementations should exist")
	}

	for _, name := range services {
		methods, err := attrs(mod, name)
		if err != nil {
			return err
		}
		for _, db := range databaseMethods {
			for _, m := range methods {
				if m == db {
					return Failf("%s should not have direct database method %s", name, db)
				}
			}
		}
	}
	return nil
}

func checkDomainEntities(mod *loader.Module) error {
	entities := names(mod, containing(architectureEntityName...))
	if len(entities) < 3 {
		return Failf("Should have User, Article, and Comment entities")
	}

	if mod.Has("User") {
		return requireAttr(mod, "User", "can_publish_articles", "User should have business logic methods")
	}
	return nil
}

func checkAPILayer(mod *loader.Module) error {
	if !mod.Has("app") {
		return Failf("FastAPI app should be defined")
	}

	app, err := mod.Get("app")
	if err != nil {
		return err
	}
	routes, err := app.RouteList()
	if err != nil {
		return err
	}

	for _, expected := range expectedRoutes {
		found := false
		for _, r := range routes {
			if strings.Contains(r, expected) {
				found = true
				break
			}
		}
		if !found {
			return Failf("Should have %s endpoint", expected)
		}
	}
	return nil
}

// checkCleanArchitecture scans the source of the User entity only
func checkCleanArchitecture(mod *loader.Module) error {
	if !mod.Has("User") {
		return nil
	}

	user, err := mod.Get("User")
	if err != nil {
		return err
	}
	if user.Source == "" {
		return loader.NewOSError("could not get source code")
	}

	source := strings.ToLower(user.Source)
	for _, imp := range infrastructureImports {
		if strings.Contains(source, imp) {
			return Failf("Domain entity should not import %s", imp)
		}
	}
	return nil
}
