package validation

import (
	"strings"
	"testing"

	"todoapi/testutil"
)

func TestValidationDependsOnDomainOnly(t *testing.T) {
	forbidden := func(path string) bool {
		return testutil.ProjectImportForbidden(path) && !strings.HasSuffix(path, "/pkg/domain")
	}
	testutil.AssertNoDirectImports(t, ".", forbidden, "validation may only use pkg/domain")
}
