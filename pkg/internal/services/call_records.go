package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/afyalink/telecare/pkg/internal/database"
	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

func ListCallRecord(roomId string, take, offset int) ([]models.CallRecord, error) {
	var records []models.CallRecord
	if err := database.C.
		Where(models.CallRecord{RoomID: roomId}).
		Limit(take).
		Offset(offset).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return records, err
	} else {
		return records, nil
	}
}

func GetOngoingCallRecord(roomId string) (models.CallRecord, error) {
	var record models.CallRecord
	if err := database.C.
		Where(models.CallRecord{RoomID: roomId}).
		Where("ended_at IS NULL").
		Order("created_at DESC").
		First(&record).Error; err != nil {
		return record, err
	} else {
		return record, nil
	}
}

func NewCallRecord(roomId, founderId, founderName string) (models.CallRecord, error) {
	record := models.CallRecord{
		RoomID:      roomId,
		FounderID:   founderId,
		FounderName: founderName,
	}

	if _, err := GetOngoingCallRecord(roomId); err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return record, fmt.Errorf("this room already has an ongoing call")
	}

	if err := database.C.Save(&record).Error; err != nil {
		return record, err
	}

	return record, nil
}

func EndCallRecord(record models.CallRecord) (models.CallRecord, error) {
	record.EndedAt = lo.ToPtr(time.Now())

	if err := database.C.Save(&record).Error; err != nil {
		return record, err
	}

	return record, nil
}
