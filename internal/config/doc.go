// Package config loads the service configuration.
//
// Sources, in increasing precedence:
//   - built-in defaults (port 8080, 10s provider timeout, extractor seed 42)
//   - an optional YAML file (server, provider, imaging, selector, archive, log)
//   - a .env file in the working directory, if present
//   - environment variables: PORT, LOG_LEVEL, APP_ENV and the variable named by
//     provider.api_key_env (default MOENV_API_KEY)
//
// Load validates the merged result. Watch uses fsnotify to reload the file
// and hands each valid new Config to a callback.
package config
