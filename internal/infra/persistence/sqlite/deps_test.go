package sqlite

import (
	"testing"

	"todoapi/testutil"
)

var allowedProjectImports = map[string]struct{}{
	"todoapi/pkg/domain":                        {},
	"todoapi/internal/infra/persistence/memory": {},
}

func TestImportsAreDomainMemoryOrExternal(t *testing.T) {
	forbidden := func(path string) bool {
		_, ok := allowedProjectImports[path]
		return testutil.ProjectImportForbidden(path) && !ok
	}
	testutil.AssertNoDirectImports(t, ".", forbidden, "sqlite store builds on the memory store only")
}
