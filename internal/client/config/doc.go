// Package config loads runtime configuration for the daybook client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c/-config or
//     $DAYBOOK_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "30s",
//	  "database_path": "daybook.db",
//	  "user_id": "alice",
//	  "timezone": "Europe/Riga",
//	  "notifier": "log"
//	}
//
// Call (*Config).Validate after loading; LoadConfig itself does not reject
// bad values.
package config
