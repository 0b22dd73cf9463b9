package todos

import (
	"testing"

	"todoapi/testutil"
)

func TestHandlerAvoidsConcreteAdapters(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "handlers reach storage through core and blob")
}
