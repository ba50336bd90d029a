package controller

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/utils"
)

type ContactController struct {
	Engine *engine.Engine
	Logger *log.Logger
}

func NewContactController(e *engine.Engine, logger *log.Logger) *ContactController {
	return &ContactController{
		Engine: e,
		Logger: logger,
	}
}

func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	account := currentAccount(c)

	var input engine.ContactInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	contact, err := cc.Engine.CreateContact(c.Context(), account.ID, input)
	if err != nil {
		return engineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(contact))
}

func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	account := currentAccount(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	contacts, total, err := cc.Engine.ListContacts(c.Context(), account.ID, engine.ContactFilter{
		Status: c.Query("status"),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  contacts,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	account := currentAccount(c)
	contactID := utils.ParseUint(c.Params("id"))

	contact, err := cc.Engine.GetContact(c.Context(), account.ID, contactID)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	account := currentAccount(c)
	contactID := utils.ParseUint(c.Params("id"))

	var input engine.ContactInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	contact, err := cc.Engine.UpdateContact(c.Context(), account.ID, contactID, input)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

func (cc *ContactController) UpdateContactStatus(c *fiber.Ctx) error {
	account := currentAccount(c)
	contactID := utils.ParseUint(c.Params("id"))

	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	contact, err := cc.Engine.UpdateContactStatus(c.Context(), account.ID, contactID, input.Status)
	if err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

func (cc *ContactController) AddTag(c *fiber.Ctx) error {
	account := currentAccount(c)
	contactID := utils.ParseUint(c.Params("id"))

	var input struct {
		Tag string `json:"tag" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	if err := cc.Engine.AddContactTag(c.Context(), account.ID, contactID, input.Tag); err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"tag": input.Tag}))
}

func (cc *ContactController) RemoveTag(c *fiber.Ctx) error {
	account := currentAccount(c)
	contactID := utils.ParseUint(c.Params("id"))
	tag := c.Params("tag")

	if err := cc.Engine.RemoveContactTag(c.Context(), account.ID, contactID, tag); err != nil {
		return engineError(c, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"removed": tag}))
}

func (cc *ContactController) BulkDeleteContacts(c *fiber.Ctx) error {
	account := currentAccount(c)

	var input struct {
		IDs []uint `json:"ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	deleted, err := cc.Engine.BulkDeleteContacts(c.Context(), account.ID, input.IDs)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contacts", err)
	}

	cc.Logger.Printf("account %d bulk-deleted %d contacts", account.ID, deleted)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": deleted}))
}

// ImportContacts ingests a CSV upload. The first row is the header; name and
// email columns are required, a tags column is split on ';', and any other
// column becomes a custom field.
func (cc *ContactController) ImportContacts(c *fiber.Ctx) error {
	account := currentAccount(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "CSV file is required", err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open uploaded file", err)
	}
	defer file.Close()

	rows, err := parseContactCSV(file)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV", err)
	}

	result, err := cc.Engine.ImportContacts(c.Context(), account.ID, rows)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Import failed", err)
	}

	cc.Logger.Printf("account %d imported %d contacts (%d duplicates, %d errors)",
		account.ID, result.Created, result.Duplicates, result.Errors)
	return c.JSON(utils.SuccessResponse(result))
}

func parseContactCSV(r io.Reader) ([]engine.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	columns := make(map[int]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
	}

	var rows []engine.ImportRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row engine.ImportRow
		for i, value := range record {
			value = strings.TrimSpace(value)
			switch columns[i] {
			case "name":
				row.Name = value
			case "email":
				row.Email = value
			case "tags":
				for _, tag := range strings.Split(value, ";") {
					if tag = strings.TrimSpace(tag); tag != "" {
						row.Tags = append(row.Tags, tag)
					}
				}
			case "":
			default:
				if value != "" {
					if row.CustomFields == nil {
						row.CustomFields = make(map[string]string)
					}
					row.CustomFields[columns[i]] = value
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportContacts streams the account's full contact book as CSV, however
// large.
func (cc *ContactController) ExportContacts(c *fiber.Ctx) error {
	account := currentAccount(c)

	contacts, err := cc.Engine.AllContacts(c.Context(), account.ID, engine.ContactFilter{
		Status: c.Query("status"),
		Tag:    c.Query("tag"),
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	writer.Write([]string{"name", "email", "status", "tags"})
	for _, contact := range contacts {
		tags := make([]string, 0, len(contact.Tags))
		for _, tag := range contact.Tags {
			tags = append(tags, tag.Tag)
		}
		writer.Write([]string{contact.Name, contact.Email, contact.Status, strings.Join(tags, ";")})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to write CSV", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="contacts.csv"`)
	return c.SendString(sb.String())
}
