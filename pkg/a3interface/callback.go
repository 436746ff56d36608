package a3interface

/*
#include <stdlib.h>

typedef int (*extensionCallback)(char const *name, char const *function, char const *data);

// https://golang.org/cmd/cgo/#hdr-C_references_to_Go
static inline int runExtensionCallback(extensionCallback fnc, char const *name, char const *function, char const *data)
{
	return fnc(name, function, data);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

// ErrNoCallback is returned while the game has not registered its callback yet.
var ErrNoCallback = errors.New("extension callback not registered")

var (
	callbackMu           sync.RWMutex
	extensionCallbackFnc C.extensionCallback
	callbackHook         func(name, function, data string) error
)

// called by Arma once, right after loading the extension
//
//export RVExtensionRegisterCallback
func RVExtensionRegisterCallback(fnc C.extensionCallback) {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	extensionCallbackFnc = fnc
}

// SetCallbackHook routes callbacks to fn instead of the game. The exe mode and
// tests use it; nil restores the game callback.
func SetCallbackHook(fn func(name, function, data string) error) {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	callbackHook = fn
}

// WriteArmaCallback raises an ExtensionCallback event in the game. A single
// argument is sent as is, several are sent as an SQF array of strings.
func WriteArmaCallback(extensionName, function string, data ...string) error {
	payload := formatCallbackData(data)

	callbackMu.RLock()
	hook, fnc := callbackHook, extensionCallbackFnc
	callbackMu.RUnlock()

	if hook != nil {
		return hook(extensionName, function, payload)
	}
	if fnc == nil {
		return ErrNoCallback
	}

	cName := C.CString(extensionName)
	defer C.free(unsafe.Pointer(cName))
	cFunction := C.CString(function)
	defer C.free(unsafe.Pointer(cFunction))
	cData := C.CString(payload)
	defer C.free(unsafe.Pointer(cData))

	// the game answers -1 when its callback queue is full
	if rc := C.runExtensionCallback(fnc, cName, cFunction, cData); rc < 0 {
		return fmt.Errorf("callback %s rejected by game (%d)", function, int(rc))
	}
	return nil
}

// sqfQuote wraps s in double quotes, doubling any quote inside.
func sqfQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatCallbackData(data []string) string {
	switch len(data) {
	case 0:
		return ""
	case 1:
		return data[0]
	}
	quoted := make([]string, len(data))
	for i, d := range data {
		quoted[i] = sqfQuote(d)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
