package main

import (
	"net"
	"strconv"
)

const (
	defaultBindHost    = "127.0.0.1"
	defaultPort        = 8080
	defaultModelsDir   = "models"
	defaultArchivePath = ""
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Addr           string `mapstructure:"addr"`
	ModelsDir      string `mapstructure:"models-dir"`
	ArchiveEnabled bool   `mapstructure:"archive-enabled"`
	ArchivePath    string `mapstructure:"archive-path"`
	ConfigPath     string `mapstructure:"-"` // not from config file
}

func (c *appConfig) listenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	host := c.Host
	if host == "" {
		host = defaultBindHost
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}
