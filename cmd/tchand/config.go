package main

import (
	"io/ioutil"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/frame"
)

// fileConfig holds the subset of tchan.Options that can come from a JSON
// config file. Fields absent from the file are left at their
// tchan.Options zero value (and so fall back to spec.md §6 defaults).
// Read with gjson rather than encoding/json so an operator's config file
// can carry unrelated fields (deploy metadata, comments-as-strings,
// whatever else lives alongside it) without failing strict unmarshal,
// the same tolerance the teacher's own go.mod pulls gjson in for.
type fileConfig struct {
	HostPort     string
	ProcessName  string
	ReqTimeoutMs int64
	SrvTimeoutMs int64
	SweepMs      int64
	FuzzMs       int64
	ChecksumType string
	AdminAddr    string
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	root := gjson.ParseBytes(raw)
	cfg.HostPort = root.Get("hostPort").String()
	cfg.ProcessName = root.Get("processName").String()
	cfg.ReqTimeoutMs = root.Get("reqTimeoutDefaultMs").Int()
	cfg.SrvTimeoutMs = root.Get("serverTimeoutDefaultMs").Int()
	cfg.SweepMs = root.Get("timeoutCheckIntervalMs").Int()
	cfg.FuzzMs = root.Get("timeoutFuzzMs").Int()
	cfg.ChecksumType = root.Get("checksumType").String()
	cfg.AdminAddr = root.Get("adminAddr").String()
	return cfg, nil
}

// toOptions merges cfg under base, with base's explicitly-set (non-zero)
// fields taking precedence — base is expected to carry CLI flag values,
// which should win over the config file.
func (cfg fileConfig) toOptions(base tchan.Options) tchan.Options {
	if base.HostPort == "" {
		base.HostPort = cfg.HostPort
	}
	if base.ProcessName == "" {
		base.ProcessName = cfg.ProcessName
	}
	if base.ReqTimeoutDefault == 0 && cfg.ReqTimeoutMs > 0 {
		base.ReqTimeoutDefault = time.Duration(cfg.ReqTimeoutMs) * time.Millisecond
	}
	if base.ServerTimeoutDefault == 0 && cfg.SrvTimeoutMs > 0 {
		base.ServerTimeoutDefault = time.Duration(cfg.SrvTimeoutMs) * time.Millisecond
	}
	if base.TimeoutCheckInterval == 0 && cfg.SweepMs > 0 {
		base.TimeoutCheckInterval = time.Duration(cfg.SweepMs) * time.Millisecond
	}
	if base.TimeoutFuzz == 0 && cfg.FuzzMs > 0 {
		base.TimeoutFuzz = time.Duration(cfg.FuzzMs) * time.Millisecond
	}
	if cfg.ChecksumType == "blake2b" {
		base.ChecksumType = frame.ChecksumBlake2b
	}
	return base
}
