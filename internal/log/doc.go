// Package log provides slog-based logging that masks credentials.
//
// SecureHandler wraps any slog.Handler and replaces sensitive values
// (passwords, X-Auth-Token, Authorization, session URIs, URLs with
// embedded credentials, request bodies that set a Password) with
// MaskValue, even at debug level.
//
// NewLogger builds the application logger: text on stderr and, with
// --log-file, a size-rotated JSON file kept by lumberjack.
//
//	logger, closer, err := log.NewLogger(os.Stderr, verbose, logFile)
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
