package services

import (
	"time"

	"github.com/afyalink/telecare/pkg/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DoAutoDatabaseCleanup sweeps aged signaling messages and hard-deletes
// soft-deleted rows. Signaling messages are transient negotiation state;
// nothing reads them again once a call has settled.
func DoAutoDatabaseCleanup() {
	retention := viper.GetDuration("calling.signaling_retention")
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	deadline := time.Now().Add(-retention)
	log.Debug().Time("deadline", deadline).Msg("Now cleaning up entire database...")

	var count int64
	if affected, err := database.NewSignalingStore(database.C).PurgeBefore(deadline); err != nil {
		log.Error().Err(err).Msg("An error occurred when purging signaling messages...")
	} else {
		count += affected
	}

	for _, model := range database.AutoMaintainRange {
		tx := database.C.Unscoped().Delete(model, "deleted_at IS NOT NULL AND deleted_at < ?", deadline)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Msg("An error occurred when running database cleanup...")
		}
		count += tx.RowsAffected
	}

	log.Debug().Int64("affected", count).Msg("Clean up entire database accomplished.")
}
