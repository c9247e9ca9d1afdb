// Package config provides configuration structures and utilities for
// replywatch. It defines the options for fetching reply threads,
// classifying questions, watch scheduling, and report output, along
// with the YAML file loader and XDG directory paths.
package config
