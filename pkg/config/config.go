// Package config implements the non-volatile key/value configuration store
// of spec §6: Wi-Fi bring-up parameters, hostname, mDNS instance name, and
// the peak-prediction method, persisted across restarts in a bbolt file.
package config

import (
	"encoding/json"
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/predictor"
)

// WiFiMode selects between access-point and station Wi-Fi bring-up, per
// spec §6. The core doesn't drive either mode itself — Wi-Fi bring-up is an
// external collaborator per spec §1 — but the value is part of the
// persisted configuration record the bring-up layer reads at boot.
type WiFiMode string

const (
	WiFiModeAP  WiFiMode = "AP"
	WiFiModeSTA WiFiMode = "STA"
)

// Settings is the full persisted configuration record of spec §6.
type Settings struct {
	WiFiMode WiFiMode `json:"wifiMode"`

	APSSID     string `json:"apSSID"`
	APPassword string `json:"apPassword"`
	APChannel  int    `json:"apChannel"`

	STASSID     string `json:"staSSID"`
	STAPassword string `json:"staPassword"`

	Hostname        string           `json:"hostname"`
	MDNSInstance    string           `json:"mdnsInstance"`
	PredictorMethod predictor.Method `json:"predictorMethod"`
}

// Defaults returns the configuration a fresh device ships with.
func Defaults() Settings {
	return Settings{
		WiFiMode:        WiFiModeAP,
		APSSID:          "kwartiwi-p1",
		APChannel:       6,
		Hostname:        "kwartiwi-p1",
		MDNSInstance:    "Kwartiwi P1",
		PredictorMethod: predictor.LinearRegression,
	}
}

var (
	bucketName  = []byte("config")
	settingsKey = []byte("settings")
)

// ErrNotConfigured is returned by Load when the store has never been
// written to.
var ErrNotConfigured = errors.New("config: no settings stored")

// Store is a bbolt-backed key/value store holding a single Settings
// record, read at boot and updated from the (external) configuration UI.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and ensures the
// config bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted Settings. It returns ErrNotConfigured, not an
// error, when nothing has been saved yet — callers fall back to Defaults.
func (s *Store) Load() (Settings, error) {
	var out Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(settingsKey)
		if raw == nil {
			return ErrNotConfigured
		}
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

// Save persists Settings as a whole, replacing whatever was stored before.
func (s *Store) Save(settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(settingsKey, raw)
	})
}
