// Package usbid looks up USB vendor and product names in the usb.ids
// database shipped with most Linux distributions.
//
// The monitor uses it to label serial adapters when listing ports. Names
// for devices missing from the system database, such as the keyboard's own
// IDs, can be added with [Database.Add].
package usbid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the usual locations of usb.ids.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Database holds vendor and product names.
type Database struct {
	mu       sync.RWMutex
	vendors  map[uint16]string
	products map[uint32]string
	paths    []string
	loaded   bool
}

// New creates an empty database that loads from paths, or from
// DefaultPaths if none are given.
func New(paths ...string) *Database {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
		paths:    paths,
	}
}

func productKey(vid, pid uint16) uint32 {
	return uint32(vid)<<16 | uint32(pid)
}

// Load reads the first database file found. It reports whether one was
// read; only the first call searches.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.loaded {
		return len(db.vendors) > 0
	}
	db.loaded = true

	for _, path := range db.paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		db.parse(f)
		f.Close()
		return true
	}
	return false
}

// Parse adds the entries of a usb.ids formatted stream.
func (db *Database) Parse(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.parse(r)
}

// parse expects db.mu held. Vendor lines are "vvvv  name"; product lines
// are the same indented by one tab. Any other section ends the vendor.
func (db *Database) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var vid uint16
	inVendor := false

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		product := line[0] == '\t'
		if product {
			if !inVendor {
				continue
			}
			line = line[1:]
		}
		id, name, ok := splitEntry(line)
		if !ok {
			if !product {
				inVendor = false
			}
			continue
		}
		if product {
			db.products[productKey(vid, id)] = name
			continue
		}
		vid, inVendor = id, true
		db.vendors[vid] = name
	}
	return scanner.Err()
}

func splitEntry(line string) (uint16, string, bool) {
	if len(line) < 6 || line[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimSpace(line[5:]), true
}

// Add registers a vendor and product name.
func (db *Database) Add(vid, pid uint16, vendor, product string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if vendor != "" {
		db.vendors[vid] = vendor
	}
	if product != "" {
		db.products[productKey(vid, pid)] = product
	}
}

// Vendor returns the vendor name for vid, or "".
func (db *Database) Vendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// Product returns the product name for vid:pid, or "".
func (db *Database) Product(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[productKey(vid, pid)]
}

// Describe renders "vvvv:pppp Vendor Product", leaving out unknown names.
func (db *Database) Describe(vid, pid uint16) string {
	s := fmt.Sprintf("%04x:%04x", vid, pid)
	for _, n := range []string{db.Vendor(vid), db.Product(vid, pid)} {
		if n != "" {
			s += " " + n
		}
	}
	return s
}

// Len returns the number of vendors and products known.
func (db *Database) Len() (vendors, products int) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors), len(db.products)
}
