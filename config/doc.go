// Package config loads the jobpanel configuration with viper.
//
// A configuration file is YAML; every key may be overridden from the
// environment with the JOBPANEL_ prefix, dots replaced by underscores:
//
//	JOBPANEL_SERVER_PORT=8080
//	JOBPANEL_CLIENT_ENDPOINT=http://jobs.internal:8080
//
// Minimal file:
//
//	app_name: jobpanel
//	run_mode: release
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	logger:
//	  level: 4
//	  format: text
//	  output: stdout
//	data:
//	  sqlite:
//	    source: file:jobpanel.db?_journal_mode=WAL
//	  redis:
//	    addr: ""
//	jobs:
//	  log_dir: ./logs
//	  command: ["python3", "scripts/scraper/scrape.py", "scripts/scraper/config.yaml"]
//	  workdir: .
//	  max_workers: 2
//	  queue_size: 16
//	  timeout: 1h
//	  test_duration: 5s
//	client:
//	  endpoint: http://127.0.0.1:8080
//	  request_timeout: 10s
//	panel:
//	  poll_interval: 1500ms
//
// LoadConfig returns a fresh *Config each call; there is no package level
// singleton. Watch re-reads the file on change and hands the new value to a
// callback.
package config
