package execctx

import (
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// CheckStatus returns nil when status is OK and a *domain.RuntimeFailure
// carrying the runtime's code and message otherwise. Every native failure in
// this package surfaces through here.
func CheckStatus(rt ports.Runtime, status domain.NativeStatus) error {
	code := rt.StatusCode(status)
	if code == domain.CodeOK {
		return nil
	}

	return domain.NewRuntimeFailure(code, rt.StatusMessage(status))
}
