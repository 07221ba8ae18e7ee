// Package config manages persistent settings for the audiocache server.
//
// Settings are stored as a JSON file. A missing file yields defaults, so
// a bare server starts without any configuration step:
//
//	settings, err := config.Load("/etc/audiocache/config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The accessor methods (FileNameTemplate, ForcedQualityValue) are the
// narrow read interface the download pipeline uses; they tolerate the
// preference store being absent or holding junk by falling back to
// defaults.
package config
