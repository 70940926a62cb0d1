// Package device describes the simulated hardware.
package device

import (
	"encoding/base64"
	"encoding/xml"
)

type Info struct {
	Serial    string
	UUID      string
	Name      string
	Model     string
	OSName    string
	OSVersion string
}

type inventoryDoc struct {
	XMLName  xml.Name `xml:"REQUEST"`
	Content  content  `xml:"CONTENT"`
	DeviceID string   `xml:"DEVICEID"`
	Query    string   `xml:"QUERY"`
}

type content struct {
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
}

// Inventory renders the inventory document sent at enrollment and on request.
func (i Info) Inventory() ([]byte, error) {
	doc := inventoryDoc{DeviceID: i.Name + "-" + i.Serial, Query: "INVENTORY"}
	doc.Content.Hardware.Name = i.Name
	doc.Content.Hardware.UUID = i.UUID
	doc.Content.Hardware.OSName = i.OSName
	doc.Content.Hardware.OSVersion = i.OSVersion
	doc.Content.Bios.Serial = i.Serial
	doc.Content.Bios.Model = i.Model
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// EncodedInventory is the base64 form used on the wire.
func (i Info) EncodedInventory() (string, error) {
	raw, err := i.Inventory()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
