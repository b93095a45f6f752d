package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the protected machine ID to this application.
const AppID = "robotalks-bridge"

// MachineID retrieves the unique ID identifying the machine, hashed
// with AppID so the raw ID is not exposed.
func MachineID() (string, error) {
	return machineid.ProtectedID(AppID)
}

// NodeID returns id if not empty. Otherwise it falls back to the
// machine ID and then the host name.
func NodeID(id string) string {
	if id != "" {
		return id
	}
	mid, err := MachineID()
	if err == nil && mid != "" {
		return mid
	}
	glog.Warningf("machine ID unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "bridge"
}
