package wireless

import "net"

// Associator reports whether the node has joined the wireless network.
type Associator interface {
	Associated() bool
}

// AssociatedFunc is the func form of Associator.
type AssociatedFunc func() bool

// Associated implements Associator.
func (f AssociatedFunc) Associated() bool {
	return f()
}

// Interface considers the node associated when the named network
// interface is up, running and has an address. Association itself is
// managed by the OS. An empty Name is always associated.
type Interface struct {
	Name string
}

// Associated implements Associator.
func (i Interface) Associated() bool {
	if i.Name == "" {
		return true
	}
	iface, err := net.InterfaceByName(i.Name)
	if err != nil {
		return false
	}
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
		return false
	}
	addrs, err := iface.Addrs()
	return err == nil && len(addrs) > 0
}
