package config

const (
	defaultDataDir                = "~/.local/share/fieldsnap"
	defaultLogDir                 = "~/.local/share/fieldsnap/logs"
	defaultAPIBind                = "127.0.0.1:7489"
	defaultStoreBackend           = "sqlite"
	defaultStoreFileName          = "queue.db"
	defaultStoreNamespace         = "fieldsnap-upload-queue"
	defaultRedisAddr              = "127.0.0.1:6379"
	defaultStorageBackend         = "localfs"
	defaultStorageLocalDirName    = "objects"
	defaultGCSEndpoint            = "https://storage.googleapis.com"
	defaultRetryLimit             = 3
	defaultMaxPerPass             = 2
	defaultRetryBackoffMillis     = 2000
	defaultRescheduleDelayMillis  = 1000
	defaultTransferTimeoutSeconds = 120
	defaultWaitPollMillis         = 500
	defaultProbeTimeoutSeconds    = 5
	defaultProbeIntervalSeconds   = 15
	defaultNotifyRequestTimeout   = 10
	defaultNotifyMinDrainUploads  = 1
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultNetlinkEnabled         = true
	defaultNotifyRetriesExhausted = true
	defaultNotifyDrainSummary     = false
	defaultConfigRelativeLocation = "~/.config/fieldsnap/config.toml"
	defaultProjectConfigFileName  = "fieldsnap.toml"
	defaultDaemonLockFileName     = "fieldsnapd.lock"
	defaultDaemonLogFileName      = "fieldsnapd.log"
	envAPIToken                   = "FIELDSNAP_API_TOKEN"
	envRedisPassword              = "FIELDSNAP_REDIS_PASSWORD"
	envGoogleCredentials          = "GOOGLE_APPLICATION_CREDENTIALS"
	envNtfyTopic                  = "FIELDSNAP_NTFY_TOPIC"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Store: Store{
			Backend:   defaultStoreBackend,
			Namespace: defaultStoreNamespace,
			RedisAddr: defaultRedisAddr,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			GCSEndpoint: defaultGCSEndpoint,
		},
		Upload: Upload{
			RetryLimit:             defaultRetryLimit,
			MaxPerPass:             defaultMaxPerPass,
			RetryBackoffMillis:     defaultRetryBackoffMillis,
			RescheduleDelayMillis:  defaultRescheduleDelayMillis,
			TransferTimeoutSeconds: defaultTransferTimeoutSeconds,
			WaitPollMillis:         defaultWaitPollMillis,
		},
		Connectivity: Connectivity{
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			Netlink:              defaultNetlinkEnabled,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			RetriesExhausted: defaultNotifyRetriesExhausted,
			DrainSummary:     defaultNotifyDrainSummary,
			MinDrainUploads:  defaultNotifyMinDrainUploads,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
