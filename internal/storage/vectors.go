package storage

import "time"

// SaveEmbedding caches an entry vector under key.
func (s *SQLiteStorage) SaveEmbedding(key string, vector []float32, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil
	}

	vectorJSON, err := vectorToJSON(vector)
	if err != nil {
		s.log.Warn("failed to marshal vector", "key", key, "error", err)
		return nil
	}

	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO entry_vectors (key, vector, version, created_at)
		VALUES (?, ?, ?, ?)
	`, key, vectorJSON, version, formatTime(time.Now())); err != nil {
		s.log.Warn("failed to save embedding", "key", key, "error", err)
	}

	return nil
}

// GetEmbedding retrieves a cached entry vector. A miss returns a nil vector.
func (s *SQLiteStorage) GetEmbedding(key string) ([]float32, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil, "", nil
	}

	rows, err := s.db.Query(`
		SELECT vector, version
		FROM entry_vectors
		WHERE key = ?
	`, key)
	if err != nil {
		s.log.Warn("failed to query embedding", "key", key, "error", err)
		return nil, "", nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, "", nil
	}

	var vectorJSON, version string
	if err := rows.Scan(&vectorJSON, &version); err != nil {
		s.log.Warn("failed to scan embedding", "key", key, "error", err)
		return nil, "", nil
	}

	vector, err := jsonToVector(vectorJSON)
	if err != nil {
		s.log.Warn("failed to parse embedding vector", "key", key, "error", err)
		return nil, "", nil
	}

	return vector, version, nil
}
