package cmd

import (
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
)

// exitFunc is replaced in tests.
var exitFunc = os.Exit

// ExitWithCode exits the program with a semantic foundry exit code and logs the error.
// logger may be nil for failures before the logger exists; err may be nil.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		exitFunc(int(exitCode))
		return
	}

	if logger == nil {
		writeFatal(os.Stderr, msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		exitFunc(info.Code)
		return
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok {
		apperrors.LogEnvelope(logger, envelope, append(fields, zap.String("exit_message", msg))...)
	} else {
		fields = append(fields, zap.Error(err))
		logger.Error(msg, fields...)
	}

	exitFunc(info.Code)
}

// ExitWithCodeStderr is a variant that writes to stderr without a logger.
// Use this for early failures before logger initialization.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		writeFatal(os.Stderr, msg, err)
		exitFunc(int(exitCode))
		return
	}

	writeFatal(os.Stderr, msg, err)
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	exitFunc(info.Code)
}

func writeFatal(w *os.File, msg string, err error) {
	switch e := err.(type) {
	case nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case *errors.ErrorEnvelope:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, e.Code, e.Message, e.CorrelationID)
		if original, ok := e.Original.(error); ok && original != nil {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}
}

// ExitCodeFor picks the foundry exit code for a command error. Bare
// exhaustion errors are normalized to their envelope first.
func ExitCodeFor(err error) foundry.ExitCode {
	switch apperrors.EnsureEnvelope(err).Code {
	case apperrors.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case apperrors.CodeRetriesExhausted, apperrors.CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	case apperrors.CodeDatabase:
		return foundry.ExitDatabaseUnavailable
	}
	return foundry.ExitFailure
}
