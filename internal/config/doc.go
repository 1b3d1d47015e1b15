// Package config provides configuration types and loading for keygate.
//
// The configuration is a single YAML document with a Kubernetes-style
// envelope:
//
//	apiVersion: keygate.io/v1
//	kind: KeyGate
//	metadata:
//	  name: keygate
//	spec:
//	  server:
//	    address: ":8080"
//	  apikey:
//	    route:
//	      headers: [X-API-Key]
//	    spec:
//	      headers: [X-API-Key]
//	    clients:
//	      provider: local
//	      path: clients.yaml
//
// Values may reference the environment with ${VAR} or ${VAR:-default};
// "$$" yields a literal dollar sign. Unset fields take defaults, see
// ApplyDefaults.
//
// # File Watching
//
// Watcher reloads the file on change and can also watch data files such as
// the local client key file:
//
//	w, err := config.NewWatcher("keygate.yaml", onChange,
//	    config.WithExtraPaths("clients.yaml"))
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package config
