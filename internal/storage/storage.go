package storage

import (
	"encoding/json"
	"fmt"
	"time"

	st "server-warden/internal/storagetypes"

	"github.com/keshon/datastore"
)

const commandHistoryLimit int = 20

// Storage wraps the guild-keyed JSON datastore. Every write replaces the
// whole guild record.
type Storage struct {
	ds *datastore.DataStore
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord fetches a guild record, creating an empty one on
// first touch. The datastore hands back loosely-typed JSON, so a marshal
// round-trip restores the Record shape.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*st.Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &st.Record{
			ModRoles: map[string]string{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record st.Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if record.ModRoles == nil {
		record.ModRoles = map[string]string{}
	}

	if len(record.CommandsHistory) > commandHistoryLimit {
		record.CommandsHistory = record.CommandsHistory[len(record.CommandsHistory)-commandHistoryLimit:]
	}

	return &record, nil
}

// AppendCommandToHistory appends a command history record for a guild.
func (s *Storage) AppendCommandToHistory(guildID string, entry st.CommandHistory) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	if entry.Datetime.IsZero() {
		entry.Datetime = time.Now()
	}
	record.CommandsHistory = append(record.CommandsHistory, entry)
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) FetchCommandHistory(guildID string) ([]st.CommandHistory, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistory, nil
}

func (s *Storage) SetModRole(guildID, roleType, roleID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.ModRoles[roleType] = roleID
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) GetModRole(guildID, roleType string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}

	roleID, exists := record.ModRoles[roleType]
	if !exists {
		return "", fmt.Errorf("role type '%s' not set for this guild", roleType)
	}
	return roleID, nil
}
