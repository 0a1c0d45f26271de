//go:build tensorflow && cgo

package runtime

import (
	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/tfcapi"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

func init() {
	builtins[tfcapi.Name] = func(BackendConfig) (ports.Runtime, error) {
		return tfcapi.New(), nil
	}
}
