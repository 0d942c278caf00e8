//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
// #include <stdlib.h>
// #include <string.h>
//
// long clipshrink_changeCount() {
//     return (long)[[NSPasteboard generalPasteboard] changeCount];
// }
//
// // Newline-separated UTIs of the first pasteboard item. Caller frees.
// char *clipshrink_types() {
//     @autoreleasepool {
//         NSArray<NSPasteboardType> *types = [[NSPasteboard generalPasteboard] types];
//         if (types == nil) return NULL;
//         NSString *joined = [types componentsJoinedByString:@"\n"];
//         return strdup([joined UTF8String]);
//     }
// }
//
// void *clipshrink_data(const char *uti, int *length) {
//     @autoreleasepool {
//         NSString *type = [NSString stringWithUTF8String:uti];
//         NSData *data = [[NSPasteboard generalPasteboard] dataForType:type];
//         *length = 0;
//         if (data == nil || [data length] == 0) return NULL;
//         void *buf = malloc([data length]);
//         memcpy(buf, [data bytes], [data length]);
//         *length = (int)[data length];
//         return buf;
//     }
// }
//
// void clipshrink_clear() {
//     [[NSPasteboard generalPasteboard] clearContents];
// }
//
// int clipshrink_set(const char *uti, const void *bytes, int length) {
//     @autoreleasepool {
//         NSString *type = [NSString stringWithUTF8String:uti];
//         NSData *data = [NSData dataWithBytes:bytes length:length];
//         return [[NSPasteboard generalPasteboard] setData:data forType:type] ? 1 : 0;
//     }
// }
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"go.klb.dev/clipshrink/internal/pipeline"
)

// utiToMIME maps pasteboard UTIs to the MIME types used across the repo.
var utiToMIME = map[string]string{
	"public.png":             pipeline.MIMEPNG,
	"public.jpeg":            pipeline.MIMEJPEG,
	"public.heic":            pipeline.MIMEHEIC,
	"public.tiff":            pipeline.MIMETIFF,
	"com.microsoft.bmp":      pipeline.MIMEBMP,
	"com.compuserve.gif":     pipeline.MIMEGIF,
	"org.webmproject.webp":   pipeline.MIMEWebP,
	"public.utf8-plain-text": "text/plain",
}

var mimeToUTI = func() map[string]string {
	m := make(map[string]string, len(utiToMIME))
	for uti, mime := range utiToMIME {
		m[mime] = uti
	}
	return m
}()

type darwinStore struct{}

// New returns the macOS pasteboard store. The change counter is
// NSPasteboard's own changeCount.
func New() Store { return darwinStore{} }

func (darwinStore) Name() string { return "macOS NSPasteboard" }

func (darwinStore) ChangeCount() int64 { return int64(C.clipshrink_changeCount()) }

func (darwinStore) Types() []string {
	cs := C.clipshrink_types()
	if cs == nil {
		return nil
	}
	defer C.free(unsafe.Pointer(cs))

	var types []string
	for _, uti := range strings.Split(C.GoString(cs), "\n") {
		if uti == "" {
			continue
		}
		if mime, ok := utiToMIME[uti]; ok {
			types = append(types, mime)
		} else {
			types = append(types, uti)
		}
	}
	return types
}

func (s darwinStore) Image() (Image, bool, error) {
	t, ok := pickImage(s.Types())
	if !ok {
		return Image{}, false, nil
	}
	data := readType(t)
	if len(data) == 0 {
		return Image{}, false, fmt.Errorf("read %s: pasteboard returned no data", t)
	}
	return Image{Data: data, Type: t}, true, nil
}

func (darwinStore) Clear() error {
	C.clipshrink_clear()
	return nil
}

func (darwinStore) SetPrimary(data []byte, typ string) error { return writeType(data, typ) }

func (darwinStore) SetFallback(data []byte, typ string) error { return writeType(data, typ) }

func (darwinStore) FallbackType() string { return pipeline.MIMETIFF }

func (darwinStore) Close() {}

func readType(mime string) []byte {
	uti := mime
	if u, ok := mimeToUTI[mime]; ok {
		uti = u
	}
	cuti := C.CString(uti)
	defer C.free(unsafe.Pointer(cuti))

	var n C.int
	p := C.clipshrink_data(cuti, &n)
	if p == nil {
		return nil
	}
	defer C.free(p)
	return C.GoBytes(p, n)
}

func writeType(data []byte, mime string) error {
	uti, ok := mimeToUTI[mime]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	if len(data) == 0 {
		return errors.New("empty representation")
	}
	cuti := C.CString(uti)
	defer C.free(unsafe.Pointer(cuti))

	if C.clipshrink_set(cuti, unsafe.Pointer(&data[0]), C.int(len(data))) == 0 {
		return fmt.Errorf("pasteboard rejected %s", uti)
	}
	return nil
}
