// Package common holds the configuration structures and logging utilities
// shared by the client, cluster and async packages.
package common
