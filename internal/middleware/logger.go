package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/rs/zerolog"
)

// RequestLogger writes one zerolog event per request.  Server errors log at
// error level, client errors at warn.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogURI:       true,
        LogMethod:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogRemoteIP:  true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            ev := log.Info()
            switch {
            case v.Status >= 500:
                ev = log.Error().Err(v.Error)
            case v.Status >= 400:
                ev = log.Warn()
            }
            ev.Str("request_id", v.RequestID).
                Str("method", v.Method).
                Str("uri", v.URI).
                Int("status", v.Status).
                Dur("latency", v.Latency).
                Str("remote_ip", v.RemoteIP).
                Str("user_id", UserID(c)).
                Msg("request")
            return nil
        },
    })
}
