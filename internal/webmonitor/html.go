package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Presence Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: sans-serif; margin: 0; background: #f4f5f7; color: #222; }
        .app { max-width: 960px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; }
        .badge { padding: 4px 10px; border-radius: 12px; background: #ccc; font-size: 12px; }
        .badge.live { background: #2e7d32; color: #fff; }
        .panel { background: #fff; border-radius: 8px; padding: 12px 16px; margin-top: 12px; }
        .stats { display: flex; gap: 24px; }
        .stat b { display: block; font-size: 22px; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td, th { text-align: left; padding: 4px 6px; border-bottom: 1px solid #eee; }
        tr.stretch { background: #fff3e0; }
        tr.error { background: #ffebee; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <h1>Presence Monitor</h1>
            <span class="badge" id="status-badge">Waiting for data...</span>
        </div>

        <div class="panel stats">
            <div class="stat"><b id="stat-frames">0</b>frames</div>
            <div class="stat"><b id="stat-sessions">0</b>active sessions</div>
            <div class="stat"><b id="stat-fpm">0</b>frames / min</div>
            <div class="stat"><b id="stat-stretch">0</b>stretch suggestions</div>
        </div>

        <div class="panel">
            <h2>Latest results</h2>
            <table>
                <thead><tr><th>Time</th><th>User</th><th>Present</th><th>Diff</th><th>Sitting</th><th>Pauses</th><th>Message</th></tr></thead>
                <tbody id="results"></tbody>
            </table>
        </div>
    </div>

    <script>
        const maxRows = 50;
        const rows = document.getElementById('results');
        const badge = document.getElementById('status-badge');

        function addResult(res) {
            const tr = document.createElement('tr');
            if (res.error) tr.className = 'error';
            else if (res.suggest_stretch) tr.className = 'stretch';
            const time = new Date(res.timestamp).toLocaleTimeString();
            for (const v of [time, res.user_id, res.present ? 'yes' : 'no', res.diff_count,
                             res.sitting_minutes + ' min', res.total_pauses, res.message]) {
                const td = document.createElement('td');
                td.textContent = v;
                tr.appendChild(td);
            }
            rows.prepend(tr);
            while (rows.children.length > maxRows) rows.lastChild.remove();
        }

        async function refreshStatus() {
            try {
                const resp = await fetch('/api/monitor/status');
                const status = await resp.json();
                document.getElementById('stat-frames').textContent = status.activity.frames_processed;
                document.getElementById('stat-sessions').textContent = status.active_sessions;
                document.getElementById('stat-fpm').textContent = status.activity.frames_per_minute.toFixed(1);
                document.getElementById('stat-stretch').textContent = status.activity.stretch_suggestions;
            } catch (e) {
                console.warn('status refresh failed', e);
            }
        }

        const source = new EventSource('/api/monitor/stream');
        source.onopen = () => { badge.textContent = 'Live'; badge.className = 'badge live'; };
        source.onerror = () => { badge.textContent = 'Reconnecting...'; badge.className = 'badge'; };
        source.onmessage = (event) => addResult(JSON.parse(event.data));

        refreshStatus();
        setInterval(refreshStatus, 5000);
    </script>
</body>
</html>
`
