// Package connectivity reports whether the device can reach the network and
// notices when reachability returns.
//
// A Signal answers the single question the uploader asks before a drain
// pass. Probe answers it with an HTTP request; Static answers it with a
// fixed value. Watcher polls a Signal and, on Linux, listens for udev
// netlink events on the net subsystem so that a returning link triggers a
// drain without waiting for the next poll.
package connectivity
