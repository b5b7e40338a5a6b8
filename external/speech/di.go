package speech

import (
	"github.com/samber/do/v2"

	"github.com/seajon16/sassbot/internal/config"
	"github.com/seajon16/sassbot/internal/speech"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (speech.Synthesizer, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudTTSSynthesizer(CloudTTSConfig{
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			DefaultLanguage: c.DefaultTTSLanguage,
		}), nil
	})
}
