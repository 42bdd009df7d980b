// Package config assembles arbor's runtime configuration.
//
// Configuration is built from layers, higher layers overriding lower:
//
//	4. command line flags      (WithOverrides)
//	3. environment variables   (ARBOR_*)
//	2. configuration file      (TOML, YAML or JSON)
//	1. built-in defaults
//
// Layers are plain maps merged with loader.DeepMerge and then decoded into
// a typed Config.
//
//	cfg, err := config.Load(config.WithFile("arbor.toml"))
//	if err != nil {
//		return err
//	}
//	log := logging.NewLogger(cfg.LoggerConfig(os.Stderr))
package config
