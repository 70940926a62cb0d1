package services

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"strings"
)

var (
	ErrInventoryMissing   = errors.New("device inventory XML is mandatory")
	ErrInventoryMalformed = errors.New("inventory XML is not well formed")
)

// Inventory is the part of an inventory document the backend keeps.
type Inventory struct {
	DeviceID  string
	Serial    string
	UUID      string
	Name      string
	Model     string
	OSName    string
	OSVersion string
	Raw       []byte
}

// Checksum identifies the document content; two identical uploads share it.
func (i *Inventory) Checksum() string {
	sum := sha256.Sum256(i.Raw)
	return hex.EncodeToString(sum[:])
}

// InventoryImporter turns a raw inventory upload into an Inventory.
type InventoryImporter interface {
	Import(raw []byte) (*Inventory, error)
}

type xmlInventory struct {
	XMLName  xml.Name `xml:"REQUEST"`
	DeviceID string   `xml:"DEVICEID"`
	Content  struct {
		Hardware struct {
			Name      string `xml:"NAME"`
			UUID      string `xml:"UUID"`
			OSName    string `xml:"OSNAME"`
			OSVersion string `xml:"OSVERSION"`
		} `xml:"HARDWARE"`
		Bios struct {
			Serial string `xml:"SSN"`
			Model  string `xml:"SMODEL"`
		} `xml:"BIOS"`
	} `xml:"CONTENT"`
}

// XMLImporter reads the inventory documents the agents produce.
type XMLImporter struct{}

func (XMLImporter) Import(raw []byte) (*Inventory, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrInventoryMissing
	}
	var doc xmlInventory
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrInventoryMalformed, err)
	}
	hw, bios := doc.Content.Hardware, doc.Content.Bios
	return &Inventory{
		DeviceID:  strings.TrimSpace(doc.DeviceID),
		Serial:    strings.TrimSpace(bios.Serial),
		UUID:      strings.TrimSpace(hw.UUID),
		Name:      strings.TrimSpace(hw.Name),
		Model:     strings.TrimSpace(bios.Model),
		OSName:    strings.TrimSpace(hw.OSName),
		OSVersion: strings.TrimSpace(hw.OSVersion),
		Raw:       raw,
	}, nil
}

// decodeInventory undoes the base64 transport encoding. Agents that send the
// document in clear are accepted too.
func decodeInventory(s string) []byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b
	}
	return []byte(s)
}
