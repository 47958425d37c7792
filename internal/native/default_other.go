//go:build !windows

package native

const defaultBackendName = SignalName
