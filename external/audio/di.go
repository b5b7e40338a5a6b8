package audio

import (
	"github.com/samber/do/v2"

	"github.com/seajon16/sassbot/internal/audio"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Opener, error) {
		return NewFFmpegOpener(), nil
	})
}
