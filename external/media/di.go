package media

import (
	"github.com/samber/do/v2"

	"github.com/seajon16/sassbot/internal/config"
	"github.com/seajon16/sassbot/internal/media"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (media.Resolver, error) {
		c := do.MustInvoke[*config.Config](i)
		return media.NewRetrying(NewYouTubeResolver(), c.MediaRetryAttempts, c.MediaRetryBackoff), nil
	})
}
