package a3interface

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#include <stdlib.h>

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>

// long paths are capped at 32767 characters
#define CCTV_PATH_MAX 32768

static char* cctvModulePath() {
	HMODULE self = NULL;
	DWORD flags = GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT;
	if (!GetModuleHandleExA(flags, (LPCSTR)cctvModulePath, &self)) {
		return NULL;
	}
	char* buf = (char*)malloc(CCTV_PATH_MAX);
	if (buf == NULL) {
		return NULL;
	}
	DWORD n = GetModuleFileNameA(self, buf, CCTV_PATH_MAX);
	if (n == 0 || n >= CCTV_PATH_MAX) {
		free(buf);
		return NULL;
	}
	return buf;
}

#elif __linux__

#define _GNU_SOURCE
#include <dlfcn.h>
#include <string.h>

static char* cctvModulePath() {
	Dl_info info;
	if (dladdr((void*)cctvModulePath, &info) == 0 || info.dli_fname == NULL) {
		return NULL;
	}
	return strdup(info.dli_fname);
}

#else

static char* cctvModulePath() { return NULL; }

#endif
*/
import "C"

import (
	"errors"
	"unsafe"
)

// ErrModulePath is returned when the loader cannot name the shared library.
var ErrModulePath = errors.New("cannot resolve module path")

// GetModulePath returns the absolute path of the DLL or SO this runtime was
// loaded from. In exe mode it is the executable itself.
func GetModulePath() (string, error) {
	p := C.cctvModulePath()
	if p == nil {
		return "", ErrModulePath
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p), nil
}
