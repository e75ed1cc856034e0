package temporalx

import (
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.Str("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.Str("TEMPORAL_NAMESPACE", "roomora"),
		TaskQueue: envutil.Str("TEMPORAL_TASK_QUEUE", "roomora-design"),

		ClientCertPath: envutil.Str("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.Str("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.Str("TEMPORAL_CLIENT_CA_PATH", ""),
	}
}
