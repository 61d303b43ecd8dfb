package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetOutputs(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		currentOut := defaultLogger.Out
		err := SetOutputs(nil, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != currentOut {
			t.Error("Logger output should not change by default")
		}
	})

	t.Run("stdout", func(t *testing.T) {
		err := SetOutputs([]string{"-"}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != os.Stdout {
			t.Error("Logger output should be stdout")
		}
	})

	t.Run("stderr", func(t *testing.T) {
		err := SetOutputs([]string{"="}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if defaultLogger.Out != os.Stderr {
			t.Error("Logger output should be stderr")
		}
	})

	t.Run("invalid_rotation", func(t *testing.T) {
		err := SetOutputs([]string{filepath.Join(t.TempDir(), "x.log")}, -1, 0)
		require.ErrorIs(t, err, ErrInvalidRotation)
	})

	t.Run("write_two_files", func(t *testing.T) {
		logDir := t.TempDir()
		log1 := filepath.Join(logDir, "file1.log")
		log2 := filepath.Join(logDir, "file2.log")
		err := SetOutputs([]string{log1, log2}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		const content = "hello log"
		_, err = io.WriteString(defaultLogger.Out, content)
		if err != nil {
			t.Fatal("Failed to write to log output with two outputs", err)
		}
		for _, name := range []string{log1, log2} {
			data, err := os.ReadFile(name)
			require.NoError(t, err)
			require.Equal(t, content, string(data))
		}
	})
	defaultLogger.SetOutput(os.Stderr)
}

func TestAddFields(t *testing.T) {
	ctx := AddFields(context.Background(), Fields{SchemaFieldKey: "madlib"})
	nested := AddFields(ctx, Fields{ModuleFieldKey: "svec"})

	require.Equal(t, Fields{SchemaFieldKey: "madlib"}, ctx.Value(LogFieldsContextKey))
	require.Equal(t, Fields{SchemaFieldKey: "madlib", ModuleFieldKey: "svec"}, nested.Value(LogFieldsContextKey))
}

func TestLogCallerTrimmer(t *testing.T) {
	tests := []struct {
		name             string
		file             string
		function         string
		expectedFile     string
		expectedFunction string
	}{
		{
			name:             "project directory",
			file:             "/home/user/work/pgpack/pkg/logging/logger.go",
			function:         "github.com/treeverse/pgpack/pkg/logging.TestFunc",
			expectedFile:     "pkg/logging/logger.go:10",
			expectedFunction: "pkg/logging.TestFunc",
		},
		{
			name:             "uppercase directory",
			file:             "/src/PgPack/pkg/upgrade/upgrade.go",
			function:         "github.com/treeverse/pgpack/pkg/upgrade.(*Upgrader).Plan",
			expectedFile:     "pkg/upgrade/upgrade.go:10",
			expectedFunction: "pkg/upgrade.(*Upgrader).Plan",
		},
		{
			name:             "outside project",
			file:             "/go/pkg/mod/github.com/sirupsen/logrus/entry.go",
			function:         "github.com/sirupsen/logrus.(*Entry).Log",
			expectedFile:     "go/pkg/mod/github.com/sirupsen/logrus/entry.go:10",
			expectedFunction: "github.com/sirupsen/logrus.(*Entry).Log",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			function, file := logCallerTrimmer(&runtime.Frame{File: tt.file, Function: tt.function, Line: 10})
			require.Equal(t, tt.expectedFile, file)
			require.Equal(t, tt.expectedFunction, function)
		})
	}
}
