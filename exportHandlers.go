package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmindustry/forge_backend/models"
	"github.com/xuri/excelize/v2"
)

// exportItemsHandler streams the per-item profit list as xlsx. Same sort and
// filter parameters as the JSON list.
func exportItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetProfitItemSummaries(c.Request.Context(), c.Query("sort"), c.Query("order"), c.Query("filter"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		sheetName := "Sheet1"
		if _, err := f.NewSheet(sheetName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		headings := []string{
			"TypeId", "TypeName", "QuantitySold", "Revenue",
			"MaterialCost", "JobInstallCost", "TaxAmount", "TotalCost",
			"Profit", "MarginPercent", "LastSaleDate",
		}
		col := 'A'
		for _, h := range headings {
			f.SetCellValue(sheetName, string(col)+"1", h)
			col++
		}

		for i, item := range items {
			row := fmt.Sprint(i + 2)
			totalCost := item.TotalMaterial.Add(item.TotalInstall).Add(item.TotalTax)
			f.SetCellValue(sheetName, "A"+row, item.TypeId)
			f.SetCellValue(sheetName, "B"+row, item.TypeName)
			f.SetCellValue(sheetName, "C"+row, item.QuantitySold.String())
			f.SetCellValue(sheetName, "D"+row, item.TotalRevenue.String())
			f.SetCellValue(sheetName, "E"+row, item.TotalMaterial.String())
			f.SetCellValue(sheetName, "F"+row, item.TotalInstall.String())
			f.SetCellValue(sheetName, "G"+row, item.TotalTax.String())
			f.SetCellValue(sheetName, "H"+row, totalCost.String())
			f.SetCellValue(sheetName, "I"+row, item.TotalProfit.String())
			f.SetCellValue(sheetName, "J"+row, item.AvgMarginPercent.String())
			f.SetCellValue(sheetName, "K"+row, item.LastSaleDate.Format("2006-01-02"))
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=profit_items.xlsx")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
