package nlog

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }

// Flush forces all buffered severities out to their writer. The optional
// boolean argument is ignored: every call flushes everything buffered.
func Flush(_ ...bool) {
	onceInit.Do(initSevs)
	for _, s := range sevs {
		s.flush()
	}
}
