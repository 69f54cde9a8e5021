package storage

import (
	"fmt"

	"server-warden/internal/tasks"
)

// LoadTasks gathers the moderation task tables of every guild into one
// id-keyed map. Implements the task manager's Store interface.
func (s *Storage) LoadTasks() (map[string]tasks.Task, error) {
	table := make(map[string]tasks.Task)

	for _, guildID := range s.ds.Keys() {
		record, err := s.getOrCreateGuildRecord(guildID)
		if err != nil {
			return nil, fmt.Errorf("error fetching record for guild %s: %w", guildID, err)
		}
		for id, t := range record.ModTasks {
			table[id] = t
		}
	}

	return table, nil
}

// SaveTasks replaces every guild's task table with the given snapshot and
// forces the write to disk: losing a task's terminal state is not
// acceptable, so this does not wait for the autosave tick.
func (s *Storage) SaveTasks(table map[string]tasks.Task) error {
	grouped := make(map[string]map[string]tasks.Task)
	for id, t := range table {
		if grouped[t.GuildID] == nil {
			grouped[t.GuildID] = make(map[string]tasks.Task)
		}
		grouped[t.GuildID][id] = t
	}

	// Replace tables for guilds already on record, clearing stale entries.
	for _, guildID := range s.ds.Keys() {
		record, err := s.getOrCreateGuildRecord(guildID)
		if err != nil {
			return fmt.Errorf("error fetching record for guild %s: %w", guildID, err)
		}
		record.ModTasks = grouped[guildID]
		delete(grouped, guildID)
		s.ds.Add(guildID, record)
	}

	// Guilds seen for the first time.
	for guildID, guildTasks := range grouped {
		record, err := s.getOrCreateGuildRecord(guildID)
		if err != nil {
			return fmt.Errorf("error fetching record for guild %s: %w", guildID, err)
		}
		record.ModTasks = guildTasks
		s.ds.Add(guildID, record)
	}

	return s.ds.SaveToFile()
}
