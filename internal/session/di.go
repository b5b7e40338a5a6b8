package session

import (
	"github.com/samber/do/v2"

	"github.com/seajon16/sassbot/internal/audio"
	"github.com/seajon16/sassbot/internal/config"
	"github.com/seajon16/sassbot/internal/discord"
	"github.com/seajon16/sassbot/internal/media"
	"github.com/seajon16/sassbot/internal/speech"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		return NewManager(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[discord.Client](i),
			do.MustInvoke[media.Resolver](i),
			do.MustInvoke[speech.Synthesizer](i),
			do.MustInvoke[audio.Opener](i),
		)
	})
}
