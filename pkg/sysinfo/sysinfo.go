package sysinfo

import (
	"fmt"
	"net"
	"os"
	"runtime"
)

// HostInfo describes the machine the process runs on. It is attached to
// operation-log rows so every recorded action names its origin.
type HostInfo struct {
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ip_address"`
	OS        string `json:"os"`
}

// Collect gathers host metadata, falling back to "unknown" when the
// environment refuses to answer rather than failing the caller.
func Collect() HostInfo {
	info := HostInfo{
		Hostname:  "unknown",
		IPAddress: "unknown",
		OS:        fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
	}

	if host, err := os.Hostname(); err == nil && host != "" {
		info.Hostname = host
	}
	if ip := outboundIP(); ip != "" {
		info.IPAddress = ip
	}

	return info
}

func outboundIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
