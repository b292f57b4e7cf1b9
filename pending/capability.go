package pending

import (
	"fmt"

	"github.com/ghyeongl/pendingfs/storage"
)

// requiredCapability is the one place the engine learns what a provider
// must declare before an operation kind is dispatched to it.
var requiredCapability = map[Kind]storage.Capability{
	KindDelete: storage.CapDelete,
	KindMove:   storage.CapMove,
	KindCopy:   storage.CapCopy,
	KindCreate: storage.CapWrite,
	KindRename: storage.CapMove,
}

// RequiredCapability returns the capability an operation of kind k needs.
func RequiredCapability(k Kind) storage.Capability {
	c, ok := requiredCapability[k]
	if !ok {
		panic(fmt.Sprintf("pending: no capability for kind %s", k))
	}
	return c
}

// Supports reports whether p can execute op.
func Supports(p storage.Provider, op Operation) bool {
	return p.HasCapability(RequiredCapability(op.Kind()))
}
