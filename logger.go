package tgrelay

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	format = "Jan 2 15:04:05"
)

// InitLogging configures the process-wide logrus logger.
// gin's route and access lines go to the debug level, its errors to the error level
func InitLogging(c *Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetOutput(os.Stderr)

	if c.Debug {
		gin.SetMode(gin.DebugMode)
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
		log.SetLevel(log.InfoLevel)
	}

	gin.DefaultWriter = log.StandardLogger().WriterLevel(log.DebugLevel)
	gin.DefaultErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)

	if c.PapertrailHost != "" {
		hook, err := newPapertrailHook(&hook{
			Host:     c.PapertrailHost,
			Port:     c.PapertrailPort,
			Hostname: hostFromConfig(c),
			Appname:  "tgrelay",
		})

		if err != nil {
			log.WithError(err).Error("can't connect the Papertrail hook")
			return
		}
		log.AddHook(hook)
	}
}

func hostFromConfig(c *Config) string {
	if c.base != nil && c.base.GetHost() != "" {
		return c.base.GetHost()
	}
	return c.AppID
}

// hook sends logs to a service compatible with the Papertrail API
type hook struct {
	// Connection Details
	Host string
	Port int

	// App Details
	Appname  string
	Hostname string

	udpConn net.Conn
}

func newPapertrailHook(hook *hook) (*hook, error) {
	var err error

	hook.udpConn, err = net.Dial("udp", fmt.Sprintf("%s:%d", hook.Host, hook.Port))
	return hook, err
}

// Fire is called when a log event is fired.
func (hook *hook) Fire(entry *log.Entry) error {
	date := time.Now().Format(format)
	msg, _ := entry.String()
	payload := fmt.Sprintf("<22> %s %s %s: %s", date, hook.Hostname, hook.Appname, msg)

	bytesWritten, err := hook.udpConn.Write([]byte(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to send log line to Papertrail via UDP. Wrote %d bytes before error: %v", bytesWritten, err)
		return err
	}

	return nil
}

// Levels returns the available logging levels.
func (hook *hook) Levels() []log.Level {
	return []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	}
}
