// Package klog provides an allocation-free logging facility for the
// allocator's boot path. It exists because several call sites (the firmware
// map normalizer, the bootstrap bump heap) run before any page allocator is
// available to service the allocations that fmt.Printf or errors.New would
// trigger, so a conventional logger cannot be used there.
package klog

import (
	"io"
	"unsafe"
)

const maxNumBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numBuf     = make([]byte, maxNumBufSize)
	singleByte = []byte{' '}

	// backlog buffers everything written before a sink is attached with
	// SetSink (e.g. while the console driver has not probed yet).
	backlog ringBuffer

	sink io.Writer
)

// SetSink directs all future Printf/Warnf output to w and flushes whatever
// was buffered in backlog to it. Passing nil reverts to buffering.
func SetSink(w io.Writer) {
	sink = w
	if w != nil {
		io.Copy(w, &backlog)
	}
}

// Printf is a Printf implementation safe to call with no backing allocator.
// It supports a minimal verb set: %s, %d, %o, %x, %t and %%, with an
// optional decimal width prefix (e.g. %4d). It never allocates.
func Printf(format string, args ...interface{}) {
	Fprintf(sink, format, args...)
}

// Warnf behaves like Printf but prefixes the message with a "warn: " marker.
func Warnf(format string, args ...interface{}) {
	Printf("warn: "+format, args...)
}

// Fprintf behaves like Printf but writes to the supplied writer; passing a
// nil writer buffers the output in the package's backlog instead.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextCh                       byte
		nextArgIndex                 int
		blockStart, blockEnd, padLen int
		fmtLen                       = len(format)
	)

	for blockEnd < fmtLen {
		nextCh = format[blockEnd]
		if nextCh != '%' {
			blockEnd++
			continue
		}

		if blockStart < blockEnd {
			writeRange(w, format, blockStart, blockEnd)
		}

		padLen = 0
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh = format[blockEnd]
			switch {
			case nextCh == '%':
				singleByte[0] = '%'
				doWrite(w, singleByte)
				break parseFmt
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'd' || nextCh == 'x' || nextCh == 'o' || nextCh == 's' || nextCh == 't':
				if nextArgIndex >= len(args) {
					doWrite(w, errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					fmtInt(w, args[nextArgIndex], 8, padLen)
				case 'd':
					fmtInt(w, args[nextArgIndex], 10, padLen)
				case 'x':
					fmtInt(w, args[nextArgIndex], 16, padLen)
				case 's':
					fmtString(w, args[nextArgIndex], padLen)
				case 't':
					fmtBool(w, args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			default:
				doWrite(w, errNoVerb)
				break parseFmt
			}
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart != blockEnd {
		writeRange(w, format, blockStart, blockEnd)
	}

	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

// writeRange writes format[from:to] one byte at a time; slicing the string
// directly and handing the result to doWrite would allocate.
func writeRange(w io.Writer, format string, from, to int) {
	for i := from; i < to; i++ {
		singleByte[0] = format[i]
		doWrite(w, singleByte)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}
	if b {
		doWrite(w, trueValue)
	} else {
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, padLen int) {
	switch casted := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(casted))
		for i := 0; i < len(casted); i++ {
			singleByte[0] = casted[i]
			doWrite(w, singleByte)
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(casted))
		doWrite(w, casted)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, singleByte)
	}
}

// fmtInt prints v (any built-in integer type) in the requested base,
// left-padded to padLen.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		sval      int64
		uval      uint64
		divider   uint64
		padCh     byte
		left, right, end int
	)

	if padLen >= maxNumBufSize {
		padLen = maxNumBufSize - 1
	}

	switch base {
	case 8:
		divider, padCh = 8, '0'
	case 10:
		divider, padCh = 10, ' '
	case 16:
		divider, padCh = 16, '0'
	}

	switch casted := v.(type) {
	case uint8:
		uval = uint64(casted)
	case uint16:
		uval = uint64(casted)
	case uint32:
		uval = uint64(casted)
	case uint64:
		uval = casted
	case uintptr:
		uval = uint64(casted)
	case int8:
		sval = int64(casted)
	case int16:
		sval = int64(casted)
	case int32:
		sval = int64(casted)
	case int64:
		sval = casted
	case int:
		sval = int64(casted)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if sval < 0 {
		uval = uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	for right < maxNumBufSize {
		remainder := uval % divider
		if remainder < 10 {
			numBuf[right] = byte(remainder) + '0'
		} else {
			numBuf[right] = byte(remainder-10) + 'a'
		}
		right++

		uval /= divider
		if uval == 0 {
			break
		}
	}

	for ; right-left < padLen; right++ {
		numBuf[right] = padCh
	}

	if sval < 0 {
		for end = right - 1; numBuf[end] == ' '; end-- {
		}
		if end == right-1 {
			right++
		}
		numBuf[end+1] = '-'
	}

	end = right
	for right = right - 1; left < right; left, right = left+1, right-1 {
		numBuf[left], numBuf[right] = numBuf[right], numBuf[left]
	}

	doWrite(w, numBuf[0:end])
}

// doWrite hides p from escape analysis so that calling Printf before the
// allocator exists does not itself trigger a heap allocation via
// runtime.convT2E.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		backlog.Write(p)
	}
}

//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
