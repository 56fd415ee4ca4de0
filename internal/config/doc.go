// Package config loads, normalizes, and validates imgsync configuration data.
//
// It supplies repository defaults (document root "src", asset root
// "src/.vuepress/public"), expands user paths including tilde shortcuts, reads
// TOML files, loads a .env file from the working directory, and honours
// IMGSYNC_* environment overrides. Relative roots are resolved against the
// working directory so every downstream package sees absolute paths.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
